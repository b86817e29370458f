// Package config loads catalog-search settings and holds the endpoint registry.
//
// Settings come from defaults, an optional YAML file, an optional dotenv
// file and the process environment, each overriding the previous one.
// Every endpoint needs a category id, set either under categories: in the
// YAML file or through <ENDPOINT>_CATEGORY_ID (FAUCETS_CATEGORY_ID,
// TUB_FILLERS_CATEGORY_ID, ...).
//
//	database:
//	  path: catalog.db
//	embedding:
//	  provider: jina
//	  api_key_env: JINA_API_KEY
//	  cache_size: 2000
//	categories:
//	  faucets: 4f1c...
//	synthetic:
//	  endpoint: flooring
//	  base_endpoint: lvps
//	  subset_endpoint: tiles
//	  subset_flag: floor
package config
