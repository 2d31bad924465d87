// Package output renders wwwhisper-admin results as a table, JSON or YAML.
package output
