package llm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeArray_CodeFence(t *testing.T) {
	text := "Here are the claims:\n```json\n[{\"text\": \"a\"}, {\"text\": \"b\"}]\n```\nLet me know if you need more."

	var out []struct {
		Text string `json:"text"`
	}
	if err := DecodeArray(text, &out); err != nil {
		t.Fatalf("DecodeArray: %v", err)
	}
	if len(out) != 2 || out[0].Text != "a" || out[1].Text != "b" {
		t.Errorf("Decoded %+v, want two items a and b", out)
	}
}

func TestDecodeArray_BareArray(t *testing.T) {
	var out []string
	if err := DecodeArray(`["one", "two"]`, &out); err != nil {
		t.Fatalf("DecodeArray: %v", err)
	}
	if diff := cmp.Diff([]string{"one", "two"}, out); diff != "" {
		t.Errorf("Decoded array mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeArray_NoArray(t *testing.T) {
	var out []string
	if err := DecodeArray("I could not find any claims in the text.", &out); err == nil {
		t.Error("Expected error for output with no JSON array")
	}
}

func TestDecodeArray_Malformed(t *testing.T) {
	var out []string
	if err := DecodeArray(`["unterminated]`, &out); err == nil {
		t.Error("Expected error for malformed JSON array")
	}
}

func TestLines_StripsMarkersAndNumbering(t *testing.T) {
	text := "1. first query\n2) second query\n- third query\n* fourth query\n\n   fifth query  \n"

	got := Lines(text)
	want := []string{"first query", "second query", "third query", "fourth query", "fifth query"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLines_Empty(t *testing.T) {
	if got := Lines("\n  \n"); got != nil {
		t.Errorf("Expected nil for blank input, got %v", got)
	}
}
