// Package flows holds the orchestration behind the root Engine operations.
//
// Each flow takes a Deps struct of plain functions and metric/event IDs, so the root package
// can wire stores, hashers and issuers without this package importing it. Flows report
// outcomes as typed results carrying a [Failure] kind; they never decide HTTP status codes.
package flows
