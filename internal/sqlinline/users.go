package sqlinline

// Every user projection must keep the column order scanned by repo.scanUser.

const QSelectUserByID = `--sql 164f6274-5fb0-4942-83bc-5dae9e96ad1b
select id, username, coalesce(email, ''), password_hash, coalesce(avatar_url, ''),
       coalesce(supabase_id::text, ''), is_staff, is_superuser, is_active,
       date_joined, last_login, updated_at
from users
where id = $1::bigint;
`

const QSelectUserByEmail = `--sql 40e4fe22-8e9c-47d5-a87d-d1b79b66f938
select id, username, coalesce(email, ''), password_hash, coalesce(avatar_url, ''),
       coalesce(supabase_id::text, ''), is_staff, is_superuser, is_active,
       date_joined, last_login, updated_at
from users
where lower(email) = lower($1::text)
order by id
limit 1;
`

const QUsernameExists = `--sql 3eb682fc-9504-4139-9c05-935d6ed31598
select exists(select 1 from users where lower(username) = lower($1::text));
`

const QInsertUser = `--sql 41858d34-f9d8-4e92-acdf-81724ebc5753
insert into users (username, email, password_hash, supabase_id, date_joined, updated_at)
values ($1::text, nullif($2::text, ''), $3::text, nullif($4::text, '')::uuid, now(), now())
returning id, username, coalesce(email, ''), password_hash, coalesce(avatar_url, ''),
          coalesce(supabase_id::text, ''), is_staff, is_superuser, is_active,
          date_joined, last_login, updated_at;
`

const QUpdateUserAvatar = `--sql 50667ab2-a475-47bc-a859-5e5ea935926c
update users
set avatar_url = nullif($2::text, ''),
    updated_at = now()
where id = $1::bigint;
`

const QUpdateUserPasswordHash = `--sql ab74edb7-66cb-4e0a-bb94-a289c83bd9a4
update users
set password_hash = $2::text,
    updated_at = now()
where id = $1::bigint;
`

const QTouchUserLogin = `--sql cba80986-5d95-4abd-8aea-1b0eb9bb1d81
update users
set last_login = now()
where id = $1::bigint;
`

const QAttachSupabaseID = `--sql c36fa2c0-3c13-4072-8b1b-ef9b5edc1b0b
update users
set supabase_id = $2::uuid,
    updated_at = now()
where id = $1::bigint
  and supabase_id is null;
`

const QSetUserStaff = `--sql f748f6cf-1b49-4749-b98c-048b28ce47cf
update users
set is_staff = $2::boolean,
    is_superuser = $3::boolean,
    updated_at = now()
where id = $1::bigint
returning id, username, coalesce(email, ''), password_hash, coalesce(avatar_url, ''),
          coalesce(supabase_id::text, ''), is_staff, is_superuser, is_active,
          date_joined, last_login, updated_at;
`

const QListUsers = `--sql f7abd5dd-5ae7-4d32-8722-67b764b24055
select id, username, coalesce(email, ''), password_hash, coalesce(avatar_url, ''),
       coalesce(supabase_id::text, ''), is_staff, is_superuser, is_active,
       date_joined, last_login, updated_at
from users
where ($1::text = '' or username ilike '%' || $1::text || '%' or email ilike '%' || $1::text || '%')
order by id
limit $2::int offset $3::int;
`
