package nl2sql

import (
	"strings"
	"testing"
)

const testSchemaText = "Artist(ArtistId INTEGER, Name VARCHAR)\nTrack(TrackId INTEGER, Name VARCHAR, ArtistId INTEGER)"

func TestBuildQueryPromptIsDeterministic(t *testing.T) {
	history := []Turn{
		AssistantTurn("Hello! I am a SQL Query Generator bot. How can I help you today?"),
		HumanTurn("How many artists are there?"),
		AssistantTurn("There are 275 artists."),
	}
	question := "Which 3 artists have the most tracks?"

	first := BuildQueryPrompt(testSchemaText, history, question)
	second := BuildQueryPrompt(testSchemaText, history, question)
	if first != second {
		t.Fatal("BuildQueryPrompt() is not deterministic")
	}

	if !strings.Contains(first, "<SCHEMA>"+testSchemaText+"</SCHEMA>") {
		t.Fatalf("prompt missing schema text:\n%s", first)
	}
	for _, turn := range history {
		if !strings.Contains(first, turn.Text) {
			t.Fatalf("prompt missing turn %q", turn.Text)
		}
	}
	if !strings.HasSuffix(first, "Question: "+question+"\nSQL Query:") {
		t.Fatalf("prompt does not end with the question:\n%s", first)
	}
	if !strings.Contains(first, "SQL Query: SELECT Name FROM Artist LIMIT 10;") {
		t.Fatal("prompt missing few-shot example")
	}
}

func TestBuildQueryPromptKeepsTurnOrder(t *testing.T) {
	prompt := BuildQueryPrompt(testSchemaText, []Turn{HumanTurn("first"), AssistantTurn("second")}, "third")
	if !strings.Contains(prompt, "Human: first\nAI: second") {
		t.Fatalf("history not rendered in order:\n%s", prompt)
	}
}

func TestBuildQueryPromptWithoutHistory(t *testing.T) {
	prompt := BuildQueryPrompt(testSchemaText, nil, "Name 10 artists")
	if !strings.Contains(prompt, "Conversation History:\n(none)") {
		t.Fatalf("empty history not rendered:\n%s", prompt)
	}
}

func TestPromptTemplateUsesDomain(t *testing.T) {
	prompt := PromptTemplate{Domain: "logistics company"}.Query(testSchemaText, nil, "q")
	if !strings.HasPrefix(prompt, "You are a data analyst at a logistics company.") {
		t.Fatalf("prompt persona = %q", strings.SplitN(prompt, "\n", 2)[0])
	}
	if !strings.HasPrefix(BuildQueryPrompt(testSchemaText, nil, "q"), "You are a data analyst at a music company.") {
		t.Fatal("default persona should use the music company domain")
	}
}

func TestBuildAnswerPromptContainsQueryAndResult(t *testing.T) {
	history := []Turn{HumanTurn("Name 10 artists from the database.")}
	prompt := BuildAnswerPrompt(testSchemaText, history, "Who has the most tracks?", "SELECT 1;", "[(1,)]")

	for _, want := range []string{
		"<SCHEMA>" + testSchemaText + "</SCHEMA>",
		"Human: Name 10 artists from the database.",
		"SQL Query: <SQL>SELECT 1;</SQL>",
		"User question: Who has the most tracks?",
		"SQL Response: [(1,)]",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("answer prompt missing %q:\n%s", want, prompt)
		}
	}
	if prompt != BuildAnswerPrompt(testSchemaText, history, "Who has the most tracks?", "SELECT 1;", "[(1,)]") {
		t.Fatal("BuildAnswerPrompt() is not deterministic")
	}
}

func TestTurnValidate(t *testing.T) {
	if err := HumanTurn("hi").Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (Turn{Role: "system", Text: "x"}).Validate(); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
