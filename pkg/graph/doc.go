// Package graph defines the design graph for papercut.
// The design graph is an immutable DAG of primitives, transforms,
// groups and wrinkle deformers produced by evaluating a script.
package graph
