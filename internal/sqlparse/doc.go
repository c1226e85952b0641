// Package sqlparse reads SQL WHERE-clause text back into a
// queryir.Condition.
//
// The grammar is the subset querysql emits in every dialect plus common
// hand-written spellings:
//
//	expr      = or
//	or        = and { OR and }
//	and       = not { AND not }
//	not       = NOT not | primary
//	primary   = "(" expr ")" | predicate
//	predicate = operand ( cmp literal | IS [NOT] NULL
//	                    | [NOT] IN "(" [literal {"," literal}] ")"
//	                    | [NOT] (LIKE | ILIKE) literal
//	                    | [NOT] BETWEEN literal AND literal )
//	          | literal cmp (operand | literal)
//	operand   = column | json_extract(column, 'path') | column {-> key}
//	          | CAST(operand AS type) | (operand)::type | LOWER(operand)
//
// Keywords are case-insensitive. Tokenization happens up front, so the
// parser can backtrack when a parenthesis turns out to wrap an operand
// rather than a group.
//
// Parse is reentrant; it keeps no state between calls.
package sqlparse
