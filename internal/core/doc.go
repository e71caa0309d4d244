// Package core provides the business logic for menu and item synchronization.
//
// This package holds the domain model and the batch engine, independent of
// any transport or database. Web handlers and tests use it through
// [Service] and supply a [Store] implementation.
//
// # Batches
//
// A batch is an ordered list of rows. Each row asks for an insert ("i"),
// update ("u") or delete ("d") of a menu or an item. [Classify] decides the
// entity kind and [Resolve] extracts the primary key:
//
//	{"action": "u", "id": "7-menu", "name": "Lunch", "price": "#", "parent_id": 3}
//	{"action": "i", "id": "", "name": "Soup", "price": "4.50", "parent_id": 7}
//
// The first row updates menu 7 of restaurant 3. The second inserts an item
// on menu 7.
//
// # Applying
//
// [Service.ApplyBatch] runs all rows in one store transaction, in the order
// given. Each row is scoped by a savepoint. A row that fails is undone and
// reported, and the next row runs. In partial mode the surviving rows
// commit; in atomic mode one failed row rolls back the whole batch.
//
// # Error Handling
//
// Row failures carry an [ErrorKind] and a support code from [MapError]:
//
//   - ROW001-ROW006: Row errors (identifiers, missing entities, parents)
//   - SYNC001-SYNC005: Batch errors (shape, size, concurrency, timeouts)
//   - DB001-DB008: Database errors (constraints, connections)
package core
