// Package config loads the JSON configuration of the intent service. Relative
// paths inside the file are resolved against the directory of the file itself.
package config
