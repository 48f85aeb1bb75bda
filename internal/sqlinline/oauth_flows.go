package sqlinline

const QInsertOAuthFlow = `--sql 3da34e64-47e2-4d29-b648-9fbe2d1ced04
insert into oauth_flows (id, code_verifier, redirect_to, created_at, expires_at)
values ($1::uuid, $2::text, $3::text, now(), $4::timestamptz);
`

// QConsumeOAuthFlow deletes and returns the flow in one statement so a
// verifier can never be exchanged twice.
const QConsumeOAuthFlow = `--sql b44d9fc2-a396-4d55-8a05-d9ebdfbec848
delete from oauth_flows
where id = $1::uuid
  and expires_at > now()
returning code_verifier, redirect_to;
`
