package profiles

const profileColumns = `
	user_id, persona_path, persona_width, persona_height, persona_content_type, persona_updated_at,
	consent_version, consent_accepted_at,
	quota_total, quota_used, quota_renews_at,
	garment_cache_path, garment_cache_expires_at,
	created_at, updated_at
`

const (
	queryGetOrCreate = `
		INSERT INTO profiles (user_id, quota_total, quota_used, quota_renews_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + profileColumns

	queryLockConsent = `
		SELECT consent_version
		FROM profiles
		WHERE user_id = $1
		FOR UPDATE
	`

	queryAcceptConsent = `
		UPDATE profiles
		SET consent_version = $2, consent_accepted_at = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns

	queryLogConsent = `
		INSERT INTO consent_acceptances (user_id, version, accepted_at)
		VALUES ($1, $2, $3)
	`

	querySetPersona = `
		UPDATE profiles
		SET persona_path = $2,
			persona_width = $3,
			persona_height = $4,
			persona_content_type = $5,
			persona_updated_at = $6,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns

	querySetGarmentCache = `
		UPDATE profiles
		SET garment_cache_path = $2, garment_cache_expires_at = $3, updated_at = NOW()
		WHERE user_id = $1
	`

	queryRenewQuotas = `
		UPDATE profiles
		SET quota_used = 0, quota_renews_at = $2, updated_at = NOW()
		WHERE quota_renews_at <= $1
	`
)
