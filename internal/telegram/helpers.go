package telegram

import (
	"sort"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"
)

func languageOf(u *models.User) string {
	if u.Language == "" {
		return config.DefaultLanguage
	}
	return u.Language
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

func sortedLanguages(langs []string) []string {
	out := append([]string(nil), langs...)
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
