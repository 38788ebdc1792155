// Package agent contains the capabilities tasks and chat messages are routed
// to, and the persona layer that gives them a display identity.
//
// The package focuses on three concerns:
//
//  1. The Capability contract (Chat / RunTask) and its model-backed
//     implementation (ModelAgent)
//  2. The persona descriptor table: id, display name, response prefix, chat
//     greeting, activity line and backing capability, loadable from YAML
//  3. The Router, which resolves an agent id to a persona and its backing
//     capability, falling back to the default persona for unknown ids
//
// Built-in tools (list_available_agents, assign_agent_to_task) expose the
// router to the reasoning loop so a coordinating model can delegate work.
package agent
