package sqlinline

import _ "embed"

// PostgresSchema creates the ledger_entries table used by the PostgreSQL store.
//
//go:embed schema/postgres.sql
var PostgresSchema string

const QSelectLedgerEntry = `--sql 7e838833-dfe0-48a3-b9fc-4b26348463d6
select value
from ledger_entries
where space = $1::text and target = $2::bytea and seq = $3::bigint;
`

const QSelectLedgerEntryForUpdate = `--sql 11a169ac-62ab-4aff-b39d-e36f3ccc537a
select value
from ledger_entries
where space = $1::text and target = $2::bytea and seq = $3::bigint
for update;
`

const QUpsertLedgerEntry = `--sql bb928eac-e437-4cde-997e-4495a71034a9
insert into ledger_entries(space, target, seq, value, updated_at)
values ($1::text, $2::bytea, $3::bigint, $4::bytea, now())
on conflict (space, target, seq) do update
set value = excluded.value, updated_at = now();
`

const QInsertLedgerEntryIfAbsent = `--sql 5b188b49-4984-4ac6-8a7a-e28b83ba2ce8
insert into ledger_entries(space, target, seq, value, updated_at)
values ($1::text, $2::bytea, $3::bigint, $4::bytea, now())
on conflict (space, target, seq) do nothing;
`

const QCountLedgerEntries = `--sql 2f6d0a1e-6b43-4c7e-9a51-3d8e0c2b7f19
select count(*) from ledger_entries;
`
