package config

import "strings"

// ICSConfig names the product in the PRODID of exported calendars.
type ICSConfig struct {
	Company  string
	Product  string
	Version  string
	Language string
}

// ProdID renders the formal public identifier of the calendar producer, for
// example "-//LDAP Contacts//Birthdays 1.0.0//EN". Version may be empty and
// the language defaults to EN.
func (c ICSConfig) ProdID() string {
	product := c.Product
	if c.Version != "" {
		product += " " + c.Version
	}
	lang := c.Language
	if lang == "" {
		lang = "EN"
	}
	return strings.Join([]string{"-", c.Company, product, lang}, "//")
}
