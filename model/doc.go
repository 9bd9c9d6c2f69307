// Package model defines the minimal completion-backend port used by the
// orchestration core and a deterministic mock for tests. Provider adapters
// over the official Anthropic and OpenAI SDKs live in the subpackages.
package model
