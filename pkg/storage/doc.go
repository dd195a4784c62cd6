/*
Package storage keeps the history of completed remediation steps.

Every successful drain and remediate call produces one types.Operation. The
Store interface saves them, fetches one by id and lists them newest first,
optionally filtered by appliance.

Two backends are available:

  - BoltStore (default): go.etcd.io/bbolt file <dataDir>/sentinel.db with an
    "operations" bucket keyed by id and an "operations_by_time" index bucket
    keyed by processing time and id.
  - SQLiteStore: github.com/mattn/go-sqlite3 file <dataDir>/sentinel.sqlite
    with an "operations" table.

Open selects the backend by driver name. Ids are assigned on save and are
strictly increasing within a store.
*/
package storage
