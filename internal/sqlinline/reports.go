package sqlinline

const QInsertReport = `--sql 430bd332-83fd-4621-ad32-e8c6ce2b7f10
insert into reports (id, user_id, diabetic_values, pdf_file, status, created_at, updated_at)
values ($1::uuid, $2::bigint, $3::jsonb, nullif($4::text, ''), $5::text, now(), now())
returning created_at, updated_at;
`

const QCompleteReport = `--sql 468d97c5-7910-4896-9226-d09f206c82aa
update reports
set openai_response_id = $2::text,
    ai_summary_text = $3::text,
    ai_raw = $4::jsonb,
    status = 'done',
    updated_at = now()
where id = $1::uuid
returning updated_at;
`

const QFailReport = `--sql 4c4c23bc-a3c1-44ce-a7e5-3439b16b8ef5
update reports
set status = 'error',
    error_message = $2::text,
    updated_at = now()
where id = $1::uuid
returning updated_at;
`

const QSelectReportForUser = `--sql 3be9bed3-0d5c-4825-8769-315bf69f1104
select id::text, user_id, diabetic_values, coalesce(pdf_file, ''), ai_summary_text, ai_raw,
       openai_response_id, status, error_message, created_at, updated_at
from reports
where id = $1::uuid
  and user_id = $2::bigint;
`

const QSelectReportByID = `--sql fa1ea1f4-7c57-40bd-8506-1b15daa9bf86
select id::text, user_id, diabetic_values, coalesce(pdf_file, ''), ai_summary_text, ai_raw,
       openai_response_id, status, error_message, created_at, updated_at
from reports
where id = $1::uuid;
`

const QListReportsByUser = `--sql 1316722a-27ec-49b0-934f-1c871203b15f
select id::text, coalesce(pdf_file, ''), created_at, count(*) over () as total
from reports
where user_id = $1::bigint
order by created_at desc
limit $2::int offset $3::int;
`

const QCountReportsByUser = `--sql ba5e42d7-d892-43b0-b24d-fd357cdd6e36
select count(*) from reports where user_id = $1::bigint;
`

const QReportStatsByUser = `--sql 38dd8551-ac26-49b9-a574-18a80f7dc01d
select
  count(*)                                                      as total,
  count(*) filter (where status = 'created')                    as created,
  count(*) filter (where status = 'processing')                 as processing,
  count(*) filter (where status = 'done')                       as done,
  count(*) filter (where status = 'error')                      as errored,
  count(*) filter (where created_at >= now() - interval '30 days') as last_30_days,
  max(created_at)                                               as latest_report_at
from reports
where user_id = $1::bigint;
`

const QAdminListReports = `--sql 9d9567ea-6636-4f3f-a3ec-fc8a1e182940
select r.id::text, r.user_id, u.username, coalesce(u.email, ''), r.status,
       r.openai_response_id, r.created_at, r.updated_at, count(*) over () as total
from reports r
join users u on u.id = r.user_id
where ($1::text = '' or r.status = $1::text)
  and ($2::timestamptz is null or r.created_at >= $2::timestamptz)
  and ($3::timestamptz is null or r.created_at < $3::timestamptz)
  and ($4::text = ''
       or u.email ilike '%' || $4::text || '%'
       or u.username ilike '%' || $4::text || '%'
       or r.openai_response_id ilike '%' || $4::text || '%')
order by r.created_at desc
limit $5::int offset $6::int;
`

const QAdminCountReports = `--sql 2ef84943-8869-4f54-b6b2-f88f6d1fceab
select count(*)
from reports r
join users u on u.id = r.user_id
where ($1::text = '' or r.status = $1::text)
  and ($2::timestamptz is null or r.created_at >= $2::timestamptz)
  and ($3::timestamptz is null or r.created_at < $3::timestamptz)
  and ($4::text = ''
       or u.email ilike '%' || $4::text || '%'
       or u.username ilike '%' || $4::text || '%'
       or r.openai_response_id ilike '%' || $4::text || '%');
`
