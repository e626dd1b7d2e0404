package sqlinline

const QProfileTokenBalance = `--sql 8fc68e2d-8383-4cfd-a44a-74fcf4f6105d
select token_balance
from user_profiles
where user_id = $1::uuid;
`

const QProfileHostingToken = `--sql 24f46b7e-a071-4abf-8a08-5b16b2154a05
select coalesce(zipline ->> 'token', '')
from user_profiles
where user_id = $1::uuid;
`

const QProfileSetHostingToken = `--sql ff6336fa-d320-4317-b3ce-dde1900dbf3f
update user_profiles
set zipline = coalesce(zipline, '{}'::jsonb) || jsonb_build_object('token', $2::text)
where user_id = $1::uuid;
`
