// Package config loads the homesim runtime configuration.
//
// # Sources
//
// Values are resolved in this order, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. The TOML file, ~/.config/homesim/config.toml unless a path is given
//  3. A .env file in the working directory, loaded into the environment
//  4. HOMESIM_* environment variables
//
// A missing config file is not an error. A missing .env file is not an error
// either; variables already set in the environment are never overwritten by
// it.
//
// # TOML Format
//
//	storage = "remote"                  # local | remote
//	data_dir = "~/.local/share/homesim" # local mode files
//	api_base = "http://localhost:8000/api/"
//	use_credentials = true
//	session_token = "..."
//	verbose_api = false
//	request_timeout = "10s"
//	requests_per_second = 20
//
//	[log]
//	path = "~/.local/state/homesim/homesim.log"
//	level = "info"                      # debug | info | warn | error
//	format = "text"                     # text | json
//
// String values are trimmed and paths support tilde expansion.
//
// # Environment
//
//	HOMESIM_STORAGE          local | remote
//	HOMESIM_API_BASE         API root URL
//	HOMESIM_USE_CREDENTIALS  true | false
//	HOMESIM_VERBOSE_API      true | false
//	HOMESIM_SESSION_TOKEN    session token for credentialed requests
//
// Blank variables are ignored. Invalid booleans or storage modes fail Load.
package config
