// Package llm defines the provider abstraction and chat types used by the
// research agents. It has no dependencies on other lexcrew packages.
package llm
