package sqlinline

// QGenerationCreate debits the owner's balance and inserts the job in one
// statement. No row comes back when the balance does not cover the cost.
const QGenerationCreate = `--sql ae193a7c-f4be-4b4e-b43b-641ef0088338
with debited as (
    update user_profiles
    set token_balance = token_balance - $8::bigint
    where user_id = $1::uuid
      and token_balance >= $8::bigint
    returning user_id
)
insert into user_generations (id, user_id, model_id, api_id, generation_type, payload, response, status, task_id, cost, claimed_until, created_at)
select gen_random_uuid(), d.user_id, $2::uuid, nullif($3::text, '')::uuid, nullif($4::text, ''),
       coalesce($5::jsonb, '{}'::jsonb), $6::jsonb, 'pending', nullif($7::text, ''), $8::bigint,
       case when $9::double precision > 0 then now() + make_interval(secs => $9::double precision) end,
       now()
from debited d
returning id::text, created_at;
`

const QGenerationGet = `--sql 55a7d383-ec99-4e08-993c-1a55852cf0aa
select g.id::text,
       g.user_id::text,
       coalesce(g.model_id::text, ''),
       coalesce(g.api_id::text, ''),
       coalesce(g.generation_type, ''),
       g.payload,
       g.response,
       g.polling_response,
       g.status,
       coalesce(g.task_id, ''),
       coalesce(g.cost, 0),
       g.settled_cost,
       g.duration,
       g.created_at,
       coalesce(m.id::text, ''),
       coalesce(m.name, ''),
       coalesce(m.generation_type, ''),
       coalesce(a.id::text, ''),
       coalesce(a.api_type, ''),
       coalesce(a.api_url, ''),
       coalesce(a.poll_url, ''),
       coalesce(a.model_name, ''),
       coalesce(a.auth_scheme, ''),
       a.pricing,
       coalesce(k.key, ''),
       coalesce(k.secret, ''),
       array(
           select f.file_id::text
           from user_generation_files f
           where f.generation_id = g.id
           order by f.file_id
       )
from user_generations g
left join models m on m.id = g.model_id
left join apis a on a.id = m.api
left join api_keys k on k.id = a.key
where g.id = $1::uuid;
`

// QGenerationUpdate only moves status and duration while the job is pending;
// diagnostics and settlement may be overwritten at any time.
const QGenerationUpdate = `--sql 1200c852-0fb6-435f-a9d3-97b38a460f20
update user_generations
set status = case
        when status = 'pending' and $2::text <> '' then $2::text
        else status
    end,
    duration = case
        when status = 'pending' and $5::int is not null then $5::int
        else duration
    end,
    response = coalesce($3::jsonb, response),
    polling_response = coalesce($4::jsonb, polling_response),
    settled_cost = coalesce($6::bigint, settled_cost)
where id = $1::uuid;
`

const QGenerationAttachFile = `--sql 0bcdee52-1499-4f7e-ac22-7ce0849f85e5
insert into user_generation_files (id, generation_id, file_id)
values (gen_random_uuid(), $1::uuid, $2::uuid);
`

// QGenerationClaim succeeds for one caller at a time per claim window.
const QGenerationClaim = `--sql 6f3b2d1e-8c4a-4e7b-9a25-d1c07e5f8b93
update user_generations
set claimed_until = now() + make_interval(secs => $2::double precision)
where id = $1::uuid
  and status = 'pending'
  and (claimed_until is null or claimed_until <= now());
`

const QGenerationListPending = `--sql a04d7948-fd87-4609-8ab7-31c62d305a50
select id::text
from user_generations
where status = 'pending'
  and created_at >= now() - make_interval(secs => $1::double precision)
  and (claimed_until is null or claimed_until <= now())
order by created_at asc
limit $2::int;
`
