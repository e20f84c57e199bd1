// Package config loads, normalizes, and validates podscribe configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, GEMINI_API_KEY, and GOOGLE_CLOUD_BUCKET. Duration settings
// are kept as strings in the file and exposed through typed accessors once
// Validate has accepted them.
package config
