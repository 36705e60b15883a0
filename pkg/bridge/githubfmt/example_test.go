// Copyright 2024-2026 Aiku AI

package githubfmt_test

import (
	"fmt"

	"github.com/aiku/discussion-bridge/pkg/bridge/githubfmt"
)

func ExampleRender() {
	body := "see https://example.com/shot.png"
	fmt.Println(githubfmt.Render(body))
	// Output:
	// see ![image](https://example.com/shot.png)
}

func ExampleRender_htmlImage() {
	body := "<img alt=\"stack trace\" src=\"https://example.com/trace.png\">"
	fmt.Println(githubfmt.Render(body))
	// Output:
	// ![stack trace](https://example.com/trace.png)
}
