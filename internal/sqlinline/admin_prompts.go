package sqlinline

const QListActiveAdminPrompts = `--sql 246c22eb-e616-4d32-ac95-05d965b644a6
select id, is_active, custom_instructions, created_at, updated_at
from admin_prompts
where is_active
order by updated_at desc;
`

const QListAdminPrompts = `--sql 1058be72-3e76-4a70-a739-5dfde9b2fe20
select id, is_active, custom_instructions, created_at, updated_at
from admin_prompts
where ($1::boolean is null or is_active = $1::boolean)
  and ($2::text = '' or custom_instructions ilike '%' || $2::text || '%')
order by updated_at desc;
`

const QSelectAdminPrompt = `--sql 1d9c0fde-5928-4d09-af25-32320c5157b8
select id, is_active, custom_instructions, created_at, updated_at
from admin_prompts
where id = $1::bigint;
`

const QInsertAdminPrompt = `--sql e1a7a0bb-e5f2-475e-8b21-7cdeeae91a94
insert into admin_prompts (is_active, custom_instructions, created_at, updated_at)
values ($1::boolean, $2::text, now(), now())
returning id, is_active, custom_instructions, created_at, updated_at;
`

const QUpdateAdminPrompt = `--sql aad07380-ed26-4435-b3bb-cdb737b734d3
update admin_prompts
set is_active = $2::boolean,
    custom_instructions = $3::text,
    updated_at = now()
where id = $1::bigint
returning id, is_active, custom_instructions, created_at, updated_at;
`

const QDeleteAdminPrompt = `--sql 5c6026db-7a60-4afb-a852-52965053c25a
delete from admin_prompts
where id = $1::bigint;
`
