package sqlinline

const QModelGet = `--sql 1965d501-a311-4ed8-8689-50c995ef5d50
select m.id::text,
       coalesce(m.name, ''),
       coalesce(m.generation_type, ''),
       a.id::text,
       coalesce(a.api_type, ''),
       coalesce(a.api_url, ''),
       coalesce(a.poll_url, ''),
       coalesce(a.model_name, ''),
       coalesce(a.auth_scheme, ''),
       a.pricing,
       coalesce(k.key, ''),
       coalesce(k.secret, '')
from models m
join apis a on a.id = m.api
left join api_keys k on k.id = a.key
where m.id = $1::uuid;
`
