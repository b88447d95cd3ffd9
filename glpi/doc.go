// Package glpi provides a client for the GLPI REST API (apirest.php).
//
// GLPI is an IT asset management and service desk application. This package
// wraps the session, item, search and document endpoints and turns status
// codes and error payloads into typed errors.
//
// # Usage
//
// New opens a session; Close kills it:
//
//	client, err := glpi.New(ctx,
//		"https://glpi.example.com/apirest.php",
//		"your-app-token",
//		glpi.UserToken("your-user-token"),
//		glpi.WithLogger(logger),
//		glpi.WithTimeout(30*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	computer, err := client.GetItem(ctx, "Computer", 1, map[string]any{"expand_dropdowns": true})
//
// # Searching
//
// Criteria may reference fields by search option id or by uid. Uids are
// resolved through a per item type FieldDirectory built from
// listSearchOptions on first use:
//
//	result, err := client.Search(ctx, "Computer", glpi.SearchQuery{
//		Criteria: []glpi.Criterion{{
//			Field:      "Item_OperatingSystem.OperatingSystem.name",
//			SearchType: "contains",
//			Value:      "^Ubuntu$",
//		}},
//		ForceDisplay: []any{"name", "Entity.completename", 45},
//	})
//
// Nested groups go in Criterion.Criteria and are encoded as
// criteria[i][criteria][j][...]. MetaCriteria are appended after the plain
// criteria with meta set. Call CompileSearch to inspect the encoded
// parameters without sending a request.
//
// # Error Handling
//
// Every failure is one of:
//
//   - *CommunicationError (errors.Is ErrCommunication): transport failure
//   - *APIError: GLPI [code, message] payload, printed as "(code) message"
//   - *UnexpectedResponseError: status the operation does not handle
//   - *ValidationError (errors.Is ErrInvalidInput): malformed criteria or
//     search text, raised before any request
//   - *LookupError (errors.Is ErrFieldNotFound): unknown field uid or id
//
// Nothing is retried.
package glpi
