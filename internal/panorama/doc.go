// Package panorama implements the panorama and album service: request
// validation, admin-secret policy and the fixed sequences of storage calls
// behind every HTTP operation. Storage is reached only through the
// interfaces in store.go so the service can run against PostgreSQL and
// MinIO in production and against in-memory stores in tests.
package panorama
