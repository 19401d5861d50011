package kra

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// File describes a stored file or folder.
type File struct {
	Ident    string `json:"ident"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Folder   bool   `json:"folder"`
	Shared   bool   `json:"shared"`
	Password bool   `json:"password"`
	// Created uses the server's own timestamp format.
	Created string `json:"created"`
	// Link is set when the server includes a download link with the entry.
	Link string `json:"link,omitempty"`
}

// Link is a time-limited download link for a single file.
type Link struct {
	URL string `json:"link"`
}

// Parse returns the link as a URL.
func (l Link) Parse() (*url.URL, error) {
	if strings.TrimSpace(l.URL) == "" {
		return nil, fmt.Errorf("kra: empty link")
	}
	return url.Parse(l.URL)
}

// UserInfo describes the account behind a session.
type UserInfo struct {
	// DaysLeft is nil when the subscription needs renewal.
	DaysLeft        *int   `json:"days_left,omitempty"`
	ObjectQuota     int64  `json:"object_quota"`
	BytesQuota      int64  `json:"bytes_quota"`
	Mailing         bool   `json:"mailing"`
	Username        string `json:"username"`
	Objects         int64  `json:"objects"`
	Bytes           int64  `json:"bytes"`
	Email           string `json:"email"`
	SubscribedUntil string `json:"subscribed_until"`
}

// NeedsRenewal reports whether the subscription has no remaining days.
func (u *UserInfo) NeedsRenewal() bool {
	return u == nil || u.DaysLeft == nil
}

// VIPDays returns the remaining subscription days as text, or "" when the
// subscription needs renewal.
func (u *UserInfo) VIPDays() string {
	if u == nil || u.DaysLeft == nil {
		return ""
	}
	return strconv.Itoa(*u.DaysLeft)
}
