package auth

import "strings"

const loginFailurePrefix = "login_failures:"

// LoginFailureKey is the cache counter for failed logins of username from ip.
func LoginFailureKey(username, ip string) string {
	return loginFailurePrefix + strings.ToLower(username) + ":" + ip
}

// LoginFailurePattern matches every failed-login counter.
const LoginFailurePattern = loginFailurePrefix + "*"
