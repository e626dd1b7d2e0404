package sqlinline

const QFileCreate = `--sql b640dbdf-a37b-460d-a527-ef32c2d790f6
insert into user_files (id, user_id, file_name, file_path, file_size, file_type, zip_data, model_id, generated_info, thumbnail_url)
values (
    gen_random_uuid(),
    $1::uuid,
    $2::text,
    $3::text,
    $4::bigint,
    $5::text,
    $6::jsonb,
    nullif($7::text, '')::uuid,
    $8::jsonb,
    nullif($9::text, '')
)
returning id::text;
`
