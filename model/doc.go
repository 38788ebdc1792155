// Package model defines the provider-agnostic abstractions for talking to
// language models inside the kernel.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Express conversation input and output as core.Message values so the
//     reasoning loop can checkpoint them without conversion
//   - Keep tool definitions minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel)
//
// Providers (OpenAI, Anthropic, Ollama through the OpenAI-compatible API)
// implement Model in sub-packages so higher layers stay decoupled from
// vendor SDKs.
package model
