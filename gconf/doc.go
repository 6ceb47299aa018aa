/*
Package gconf provides a toolset for managing an extension configuration.

Each extension that defines a configuration object can use gconf to store
it as a singleton record, scoped by the extension name.
*/
package gconf
