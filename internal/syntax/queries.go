package syntax

import (
	"regexp"

	"github.com/jenian/envwatch/internal/scanner"
)

// Captures used by every query:
//
//	@obj, @fn   the receiver and accessor that must identify an env lookup
//	@root       optional outer path segment (std in std::env::var)
//	@getter     optional trailing call (get in System.getenv().get)
//	@key        a string literal or property naming the variable
//	@dynamic    an expression whose value is only known at runtime

// javaScriptQuery finds process.env.KEY, process.env["KEY"] and process.env[expr]
const javaScriptQuery = `
[
  (member_expression
    object: (member_expression
      object: (identifier) @obj
      property: (property_identifier) @fn)
    property: (property_identifier) @key)
  (subscript_expression
    object: (member_expression
      object: (identifier) @obj
      property: (property_identifier) @fn)
    index: (string) @key)
  (subscript_expression
    object: (member_expression
      object: (identifier) @obj
      property: (property_identifier) @fn)
    index: (binary_expression) @dynamic)
  (subscript_expression
    object: (member_expression
      object: (identifier) @obj
      property: (property_identifier) @fn)
    index: (identifier) @dynamic)
]
`

// goQuery finds os.Getenv("KEY") and os.LookupEnv("KEY")
const goQuery = `
[
  (call_expression
    function: (selector_expression
      operand: (identifier) @obj
      field: (field_identifier) @fn)
    arguments: (argument_list (interpreted_string_literal) @key))
  (call_expression
    function: (selector_expression
      operand: (identifier) @obj
      field: (field_identifier) @fn)
    arguments: (argument_list (raw_string_literal) @key))
  (call_expression
    function: (selector_expression
      operand: (identifier) @obj
      field: (field_identifier) @fn)
    arguments: (argument_list (binary_expression) @dynamic))
  (call_expression
    function: (selector_expression
      operand: (identifier) @obj
      field: (field_identifier) @fn)
    arguments: (argument_list (identifier) @dynamic))
]
`

// pythonQuery finds os.environ["KEY"] and os.getenv("KEY")
const pythonQuery = `
[
  (subscript
    value: (attribute
      object: (identifier) @obj
      attribute: (identifier) @fn)
    subscript: (string) @key)
  (call
    function: (attribute
      object: (identifier) @obj
      attribute: (identifier) @fn)
    arguments: (argument_list (string) @key))
  (subscript
    value: (attribute
      object: (identifier) @obj
      attribute: (identifier) @fn)
    subscript: (binary_operator) @dynamic)
  (call
    function: (attribute
      object: (identifier) @obj
      attribute: (identifier) @fn)
    arguments: (argument_list (identifier) @dynamic))
]
`

// rustQuery finds env::var("KEY") and std::env::var("KEY")
const rustQuery = `
[
  (call_expression
    function: (scoped_identifier
      path: (identifier) @obj
      name: (identifier) @fn)
    arguments: (arguments (string_literal) @key))
  (call_expression
    function: (scoped_identifier
      path: (scoped_identifier
        path: (identifier) @root
        name: (identifier) @obj)
      name: (identifier) @fn)
    arguments: (arguments (string_literal) @key))
  (call_expression
    function: (scoped_identifier
      path: (identifier) @obj
      name: (identifier) @fn)
    arguments: (arguments (identifier) @dynamic))
]
`

// javaQuery finds System.getenv("KEY") and System.getenv().get("KEY")
const javaQuery = `
[
  (method_invocation
    object: (identifier) @obj
    name: (identifier) @fn
    arguments: (argument_list (string_literal) @key))
  (method_invocation
    object: (method_invocation
      object: (identifier) @obj
      name: (identifier) @fn)
    name: (identifier) @getter
    arguments: (argument_list (string_literal) @key))
  (method_invocation
    object: (identifier) @obj
    name: (identifier) @fn
    arguments: (argument_list (binary_expression) @dynamic))
  (method_invocation
    object: (identifier) @obj
    name: (identifier) @fn
    arguments: (argument_list (identifier) @dynamic))
]
`

// rule pairs a query with the check that a match is really an env lookup
type rule struct {
	query    string
	accepted func(captures map[string]string) bool
}

var rules = map[scanner.Language]rule{
	scanner.LanguageJavaScript: {javaScriptQuery, isProcessEnv},
	scanner.LanguageTypeScript: {javaScriptQuery, isProcessEnv},
	scanner.LanguageGo: {goQuery, func(c map[string]string) bool {
		return c["obj"] == "os" && (c["fn"] == "Getenv" || c["fn"] == "LookupEnv")
	}},
	scanner.LanguagePython: {pythonQuery, func(c map[string]string) bool {
		return c["obj"] == "os" && (c["fn"] == "environ" || c["fn"] == "getenv")
	}},
	scanner.LanguageRust: {rustQuery, func(c map[string]string) bool {
		if root, ok := c["root"]; ok && root != "std" {
			return false
		}
		return c["obj"] == "env" && (c["fn"] == "var" || c["fn"] == "var_os")
	}},
	scanner.LanguageJava: {javaQuery, func(c map[string]string) bool {
		if getter, ok := c["getter"]; ok && getter != "get" {
			return false
		}
		return c["obj"] == "System" && c["fn"] == "getenv"
	}},
}

func isProcessEnv(c map[string]string) bool {
	return c["obj"] == "process" && c["fn"] == "env"
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// keyName turns a captured literal into a variable name, or "" when it is not one
func keyName(literal string) string {
	key := trimQuotes(literal)
	if !identifier.MatchString(key) {
		return ""
	}
	return key
}

// trimQuotes removes surrounding quotes from a string
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '`' && s[len(s)-1] == '`') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
