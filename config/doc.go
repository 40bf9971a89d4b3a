// Package config loads library-wide defaults from the environment and an
// optional parley.yaml file.
//
// [Load] layers its sources, lowest to highest precedence: built-in defaults,
// parley.yaml in the working directory, PARLEY_* environment variables. A
// .env file in the working directory is folded into the environment first
// (via godotenv), so values placed there behave exactly like exported
// variables.
//
// Conversation engines treat a [Config] as a snapshot: values are read once
// when an invocation starts and never re-read mid-conversation.
package config
