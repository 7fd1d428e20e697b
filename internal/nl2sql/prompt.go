package nl2sql

import (
	"fmt"
	"strings"
)

const DefaultDomain = "music company"

const queryPromptFormat = `You are a data analyst at a %s. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, write a SQL query that would answer the user's question. Take the conversation history into account.

<SCHEMA>%s</SCHEMA>

Conversation History:
%s

Write only the SQL query and nothing else. Do not wrap the SQL query in any other text, not even backticks.
Avoid line breaks and output the SQL query in a single line without any comments.

For example:
Question: Which 3 artists have the most tracks?
SQL Query: SELECT ArtistId, COUNT(*) as track_count FROM Track GROUP BY ArtistId ORDER BY track_count DESC LIMIT 3;
Question: Name 10 artists from the database.
SQL Query: SELECT Name FROM Artist LIMIT 10;

Your turn:

Question: %s
SQL Query:`

const answerPromptFormat = `You are a data analyst at a %s. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, the question, the SQL query, and the SQL response, write a natural language response.

<SCHEMA>%s</SCHEMA>

Conversation History:
%s

SQL Query: <SQL>%s</SQL>
User question: %s
SQL Response: %s`

// PromptTemplate renders both generation prompts for a business domain.
type PromptTemplate struct {
	Domain string
}

func (p PromptTemplate) domain() string {
	if domain := strings.TrimSpace(p.Domain); domain != "" {
		return domain
	}
	return DefaultDomain
}

func (p PromptTemplate) Query(schemaText string, history []Turn, question string) string {
	return fmt.Sprintf(queryPromptFormat, p.domain(), schemaText, FormatHistory(history), question)
}

func (p PromptTemplate) Answer(schemaText string, history []Turn, question, sql, result string) string {
	return fmt.Sprintf(answerPromptFormat, p.domain(), schemaText, FormatHistory(history), sql, question, result)
}

func BuildQueryPrompt(schemaText string, history []Turn, question string) string {
	return PromptTemplate{}.Query(schemaText, history, question)
}

func BuildAnswerPrompt(schemaText string, history []Turn, question, sql, result string) string {
	return PromptTemplate{}.Answer(schemaText, history, question, sql, result)
}
