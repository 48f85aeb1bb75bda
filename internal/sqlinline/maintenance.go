package sqlinline

const QPurgeExpiredOAuthFlows = `--sql 7521b9a9-9c63-4300-b5a0-4460a88904aa
delete from oauth_flows
where expires_at <= now();
`

const QFailStaleReports = `--sql acdc93a1-bd6e-459c-8bd8-ad3023b96baa
update reports
set status = 'error',
    error_message = $2::text,
    updated_at = now()
where status = 'processing'
  and updated_at < now() - make_interval(secs => $1::int);
`
