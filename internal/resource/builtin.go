package resource

// Book is the built-in book catalogue kind.
func Book() *Kind {
	return &Kind{
		Name:  "Book",
		Route: "books",
		Table: "books",
		Fields: []Field{
			{Name: "title", Type: TypeString, Rules: "required"},
			{Name: "author", Type: TypeString, Rules: "required"},
			{Name: "price", Type: TypeFloat, Rules: "required,gt=0"},
			{Name: "year", Type: TypeInt, Rules: "required,gte=0"},
		},
	}
}

// Employee is the built-in employee directory kind.
func Employee() *Kind {
	return &Kind{
		Name:  "Employee",
		Route: "employees",
		Table: "employees",
		Fields: []Field{
			{
				Name:  "name",
				Type:  TypeString,
				Rules: "required,min=2",
				Messages: map[string]string{
					"required": "Name is mandatory and cannot be empty",
					"min":      "Name must have at least 2 characters",
				},
			},
			{
				Name:  "department",
				Type:  TypeString,
				Rules: "required",
				Messages: map[string]string{
					"required": "Department is mandatory and cannot be empty",
				},
			},
		},
	}
}

// Builtins returns the kinds served when none are configured.
func Builtins() []*Kind {
	return []*Kind{Book(), Employee()}
}
