package codemate_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	codemate "github.com/gsarma/codemate/sdk"
)

func Example_basicUsage() {
	ctx := context.Background()
	client := codemate.New("http://localhost:5000")

	// --- Compile and classify ---
	res, err := client.Compile(ctx, codemate.CompileRequest{
		Code: "#include <stdio.h>\nint main() { printf(\"hi\") return 0; }\n",
		Mode: codemate.ModeStudent,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Classification.ErrorType, res.Classification.SeverityPercent)

	if res.Status != codemate.StatusFailed {
		return
	}

	// --- Ask for an explanation ---
	explanation, err := client.Explain(ctx, codemate.ExplainRequest{Errors: res.RawError})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(explanation)

	// --- Push the severity to the meter ---
	if _, err := client.HardwareUpdate(ctx, res.Classification.SeverityPercent); err != nil {
		log.Println("meter:", err)
	}
}

func Example_autofix() {
	ctx := context.Background()
	client := codemate.New("http://localhost:5000")

	fix, err := client.Autofix(ctx, "int main() { int x = 5 return x; }")
	var apiErr *codemate.APIError
	if errors.As(err, &apiErr) && apiErr.Explanation != "" {
		fmt.Println("No fix available:", apiErr.Explanation)
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(fix.Note)
	fmt.Println(fix.Diff)
}
