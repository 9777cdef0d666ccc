package dice

import (
	"fmt"
	"strings"
)

// Result is the outcome of one comma-separated roll request.
//
// Exactly one of Outcome and Err is set.
type Result struct {
	Request string
	Outcome *Outcome
	Line    string
	Err     error
}

// Failed reports whether the request could not be rolled.
func (r Result) Failed() bool {
	return r.Err != nil
}

// RollAll splits text on commas and evaluates each request independently.
// A failure in one request never affects its siblings.
//
// Postcondition: len(result) == strings.Count(text, ",")+1, in input order.
func RollAll(text string, src Source) []Result {
	requests := strings.Split(text, ",")
	results := make([]Result, 0, len(requests))
	for _, request := range requests {
		outcome, err := Evaluate(request, src)
		if err != nil {
			results = append(results, Result{
				Request: request,
				Line:    fmt.Sprintf("%s roll failed: %v", ParseLabel(request), err),
				Err:     err,
			})
			continue
		}
		results = append(results, Result{
			Request: request,
			Outcome: &outcome,
			Line:    outcome.String(),
		})
	}
	return results
}

// Lines returns the formatted line of every result, in order.
func Lines(results []Result) []string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.Line
	}
	return lines
}
