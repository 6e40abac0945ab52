package nl2sql

import (
	"strconv"
	"strings"
)

const queryInstructionsTemplate = `Given an input question, create a syntactically correct {dialect} query to run to help find the answer. Unless the user specifies in his question a specific number of examples they wish to obtain, always limit your query to at most {top_k} results.

Never query for all the columns from a specific table, only ask for the few relevant columns given the question.

Only use the following tables:
{table_info}`

const queryOutputInstructions = `Respond with a JSON object that has exactly one key, "query", whose value is the syntactically valid SQL query. Do not include any other text.`

const answerTemplate = `Given the following user question, corresponding SQL query, and SQL result, answer the user question clearly.

Question: {question}
SQL Query: {query}
SQL Result: {result}

Answer:`

// QueryPrompt renders the system and user parts of the query-writing prompt.
func QueryPrompt(req QueryRequest) (system string, user string) {
	system = strings.NewReplacer(
		"{dialect}", req.Dialect,
		"{top_k}", strconv.Itoa(req.TopK),
		"{table_info}", req.TableInfo,
	).Replace(queryInstructionsTemplate)
	system += "\n\n" + queryOutputInstructions
	return system, "Question: " + req.Question
}

// AnswerPrompt embeds the question, the query and the execution result
// verbatim.
func AnswerPrompt(question, query, result string) string {
	// Replacer scans the template once, so braces inside the values are left alone.
	return strings.NewReplacer(
		"{question}", question,
		"{query}", query,
		"{result}", result,
	).Replace(answerTemplate)
}
