// Package postgres implements the storage interfaces on PostgreSQL with the
// pgvector extension.
//
// Records live in the tenders table and vectors in tender_vectors, which
// references tenders with ON DELETE CASCADE. Similarity ranking is done by the
// database with the cosine distance operator (<=>). The schema is embedded in
// the binary and applied on Open.
package postgres
