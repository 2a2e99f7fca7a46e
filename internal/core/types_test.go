package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifiersDropsBlanksAndKeepsDuplicates(t *testing.T) {
	ids := Identifiers([]string{" 200312345A ", "", "   ", "201912345B", "200312345A"})
	require.Equal(t, []string{"200312345A", "201912345B", "200312345A"}, ids)
}

func TestSummarize(t *testing.T) {
	results := []LookupResult{
		{Identifier: "a", Status: 200, Body: StructuredBody(map[string]any{"returnCode": json.Number("10")})},
		{Identifier: "b", Status: 200, Body: StructuredBody(map[string]any{"returnCode": json.Number("30")})},
		{Identifier: "c", Status: 0, Body: ErrorBody("ConnectError: refused")},
		{Identifier: "d", Status: 500, Body: StructuredBody(map[string]any{"error": "upstream"})},
		{Identifier: "e", Status: 502, Body: RawBody("bad gateway")},
	}

	summary := Summarize(results)
	require.Equal(t, 5, summary.Dispatched)
	require.Equal(t, 1, summary.Successful)
	require.Equal(t, 2, summary.Errors)
	require.Equal(t, 2, summary.Others)
}
