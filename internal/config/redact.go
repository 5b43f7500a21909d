package config

import "regexp"

// Probe URLs may carry basic-auth credentials in their userinfo part.
// Anything that embeds a target URL in an error, a log line or a
// diagnostic report masks the password first.
var urlCredentialsPattern = regexp.MustCompile(`://([^:/@\s]+):([^/@\s]+)@`)

// RedactURL masks the password of any credentialed URL inside s. The
// username stays visible so operators can still tell targets apart.
// Strings without credentials come back unchanged.
func RedactURL(s string) string {
	return urlCredentialsPattern.ReplaceAllString(s, "://$1:****@")
}
