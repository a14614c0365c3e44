// Package task defines the task record exchanged with the task service,
// along with validation and list helpers.
//
// The wire format is the JSON produced by the service:
//
//	{
//	  "id": 7,
//	  "title": "Write report",
//	  "description": "Quarterly numbers",
//	  "dueDate": "2024-05-01",
//	  "completed": false
//	}
//
// # Validation
//
// Drafts are checked locally before they are sent:
//   - title is required (whitespace-only titles are rejected)
//   - title must be at most 100 characters
//
// Payloads received from the service are checked against an embedded
// JSON Schema (draft 2020-12) before decoding, so a misbehaving service
// surfaces as a ValidationError with a readable path such as "[3].dueDate".
//
// # Ordering
//
// Sort places open tasks before completed ones, then orders by due date
// (tasks without a due date last) and finally by id.
package task
