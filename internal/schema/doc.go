// Package schema describes how tables map into nested records.
//
// A Definition names a table, its primary key and owned columns, and a
// list of Property edges to child Definitions. Edges are one-to-one,
// one-to-many, or many-to-many through a join table. Definitions also
// carry the soft-delete column, read-only and auto-increment flags, and
// overlay data merged into insert, update and soft-delete payloads.
//
// Example:
//
//	items := schema.New("items").WithColumns("description", "amount")
//	orders := schema.New("orders").
//		WithColumns("date_created").
//		WithMany(items, "items", "order_id").
//		WithDeletionTimestamp("date_deleted")
//	customers := schema.New("customers").
//		WithColumns("name").
//		WithMany(orders, "orders", "customer_id")
package schema
