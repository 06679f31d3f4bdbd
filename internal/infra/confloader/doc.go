// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first: the target struct's existing values, a
// YAML file, environment variables, then overrides from flags. Environment keys drop the prefix, lower-case,
// and use a double underscore for nesting:
//
//	VAULT_VAULT__NR_DEVS=8          -> vault.nr_devs
//	VAULT_SERVER__RESP__ADDRESS=... -> server.resp.address
//
// Watcher reports writes to a config file so callers can re-apply the
// settings that are safe to change at runtime.
package confloader
