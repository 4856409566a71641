package sqlinline

const QCreatePredictionsTable = `--sql 0b6f2f0e-5a0c-4d0b-9f39-2c1f7e8a4d11
create table if not exists predictions (
  id           text primary key,
  status       text not null,
  output       jsonb not null default '[]'::jsonb,
  detail       text not null default '',
  model        text not null default '',
  prompt       text not null,
  style        text not null,
  actor_id     int not null,
  actor_name   text not null,
  created_at   timestamptz not null default now(),
  completed_at timestamptz,
  updated_at   timestamptz not null default now()
);
create index if not exists predictions_unsettled_idx
  on predictions (created_at)
  where status not in ('succeeded', 'failed', 'canceled', 'timed_out');
`

const QInsertPrediction = `--sql 7d3c1a52-88e4-4f0e-b1a3-6c2b9d4e5f60
insert into predictions(
  id,
  status,
  output,
  detail,
  model,
  prompt,
  style,
  actor_id,
  actor_name,
  created_at,
  completed_at,
  updated_at
) values (
  $1::text,
  $2::text,
  $3::jsonb,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::int,
  $9::text,
  coalesce($10::timestamptz, now()),
  $11::timestamptz,
  now()
)
on conflict (id) do nothing;
`

// QUpdatePredictionSnapshot leaves settled predictions untouched, so a late
// "start" callback cannot reopen a finished job.
const QUpdatePredictionSnapshot = `--sql a1e4b7c9-2d3f-4a5b-8c6d-7e8f9a0b1c2d
update predictions
set status = $2::text,
    output = $3::jsonb,
    detail = $4::text,
    completed_at = coalesce($5::timestamptz, completed_at),
    updated_at = now()
where id = $1::text
  and status not in ('succeeded', 'failed', 'canceled', 'timed_out');
`

const QSelectPredictionByID = `--sql 3f9a2b1c-4d5e-4f60-8a7b-9c0d1e2f3a4b
select id, status, output, detail, model, prompt, style, actor_id, actor_name, created_at, completed_at, updated_at
from predictions
where id = $1::text
limit 1;
`

// QListPendingPredictions skips rows touched within the last $2 seconds so a
// prediction is not polled while its client is still polling it.
const QListPendingPredictions = `--sql c2d3e4f5-a6b7-4c8d-9e0f-1a2b3c4d5e6f
select id, status, output, detail, model, prompt, style, actor_id, actor_name, created_at, completed_at, updated_at
from predictions
where status not in ('succeeded', 'failed', 'canceled', 'timed_out')
  and updated_at < now() - make_interval(secs => $2::float8)
order by created_at asc
limit $1::int;
`

const QMarkPredictionTimedOut = `--sql 5b6c7d8e-9f0a-4b1c-8d2e-3f4a5b6c7d8e
update predictions
set status = $3::text,
    detail = $2::text,
    completed_at = now(),
    updated_at = now()
where id = $1::text
  and status not in ('succeeded', 'failed', 'canceled', 'timed_out');
`
