// Package dag defines the workflow graph description and its static
// validator. A definition parsed from JSON is expanded into a five layer
// vertex graph (input port, tool, output variant, output port, and input
// port with a default value) and checked for acyclicity, layering and
// concurrency balance before it is accepted for publishing.
package dag
