package schema

// People is the built-in layout for person-profile dumps: one row per person,
// scalar profile attributes as text or int columns, and list-valued or nested
// attributes (emails, experience, education, ...) kept as compact JSON text.
var People = MustNew("people", []Column{
	{Name: "id", Kind: Text},
	{Name: "full_name", Kind: Text},
	{Name: "first_name", Kind: Text},
	{Name: "middle_initial", Kind: Text},
	{Name: "middle_name", Kind: Text},
	{Name: "last_name", Kind: Text},
	{Name: "gender", Kind: Text},
	{Name: "birth_year", Kind: Int},
	{Name: "birth_date", Kind: Text},
	{Name: "linkedin_url", Kind: Text},
	{Name: "linkedin_username", Kind: Text},
	{Name: "linkedin_id", Kind: Text},
	{Name: "facebook_url", Kind: Text},
	{Name: "facebook_username", Kind: Text},
	{Name: "facebook_id", Kind: Text},
	{Name: "twitter_url", Kind: Text},
	{Name: "twitter_username", Kind: Text},
	{Name: "github_url", Kind: Text},
	{Name: "github_username", Kind: Text},
	{Name: "work_email", Kind: Text},
	{Name: "mobile_phone", Kind: Text},
	{Name: "industry", Kind: Text},
	{Name: "job_title", Kind: Text},
	{Name: "job_title_role", Kind: Text},
	{Name: "job_title_sub_role", Kind: Text},
	{Name: "job_title_levels", Kind: JSON},
	{Name: "job_company_id", Kind: Text},
	{Name: "job_company_name", Kind: Text},
	{Name: "job_company_website", Kind: Text},
	{Name: "job_company_size", Kind: Text},
	{Name: "job_company_founded", Kind: Int},
	{Name: "job_company_industry", Kind: Text},
	{Name: "job_company_linkedin_url", Kind: Text},
	{Name: "job_company_linkedin_id", Kind: Text},
	{Name: "job_company_facebook_url", Kind: Text},
	{Name: "job_company_twitter_url", Kind: Text},
	{Name: "job_company_location_name", Kind: Text},
	{Name: "job_company_location_locality", Kind: Text},
	{Name: "job_company_location_metro", Kind: Text},
	{Name: "job_company_location_region", Kind: Text},
	{Name: "job_company_location_geo", Kind: Text},
	{Name: "job_company_location_street_address", Kind: Text},
	{Name: "job_company_location_address_line_2", Kind: Text},
	{Name: "job_company_location_postal_code", Kind: Text},
	{Name: "job_company_location_country", Kind: Text},
	{Name: "job_company_location_continent", Kind: Text},
	{Name: "job_last_updated", Kind: Text},
	{Name: "job_start_date", Kind: Text},
	{Name: "job_summary", Kind: Text},
	{Name: "location_name", Kind: Text},
	{Name: "location_locality", Kind: Text},
	{Name: "location_metro", Kind: Text},
	{Name: "location_region", Kind: Text},
	{Name: "location_country", Kind: Text},
	{Name: "location_continent", Kind: Text},
	{Name: "location_street_address", Kind: Text},
	{Name: "location_address_line_2", Kind: Text},
	{Name: "location_postal_code", Kind: Text},
	{Name: "location_geo", Kind: Text},
	{Name: "location_last_updated", Kind: Text},
	{Name: "linkedin_connections", Kind: Int},
	{Name: "inferred_salary", Kind: Text},
	{Name: "inferred_years_experience", Kind: Int},
	{Name: "summary", Kind: Text},
	{Name: "phone_numbers", Kind: JSON},
	{Name: "emails", Kind: JSON},
	{Name: "interests", Kind: JSON},
	{Name: "skills", Kind: JSON},
	{Name: "location_names", Kind: JSON},
	{Name: "regions", Kind: JSON},
	{Name: "countries", Kind: JSON},
	{Name: "street_addresses", Kind: JSON},
	{Name: "experience", Kind: JSON},
	{Name: "education", Kind: JSON},
	{Name: "profiles", Kind: JSON},
	{Name: "certifications", Kind: JSON},
	{Name: "languages", Kind: JSON},
	{Name: "version_status", Kind: JSON},
})
