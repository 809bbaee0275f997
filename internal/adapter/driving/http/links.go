package httphandler

import "fmt"

// Link is a hypermedia control telling the client where it can go next.
type Link struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

// Links maps a relation name to its Link.
type Links map[string]Link

const tasksPath = "/api/tasks"

func signupLinks() Links {
	return Links{
		"login": {Href: "/api/auth/login", Method: "POST"},
	}
}

func loginLinks() Links {
	return Links{
		"tasks":      {Href: tasksPath, Method: "GET"},
		"createTask": {Href: tasksPath, Method: "POST"},
	}
}

func meLinks() Links {
	return Links{
		"tasks":  {Href: tasksPath, Method: "GET"},
		"logout": {Href: "/api/auth/logout", Method: "POST"},
	}
}

func taskLinks(id int64) Links {
	links := taskItemLinks(id)
	links["list"] = Link{Href: tasksPath, Method: "GET"}
	return links
}

func taskItemLinks(id int64) Links {
	href := fmt.Sprintf("%s/%d", tasksPath, id)
	return Links{
		"self":   {Href: href, Method: "PUT"},
		"delete": {Href: href, Method: "DELETE"},
	}
}

func taskListLinks() Links {
	return Links{
		"self":            {Href: tasksPath, Method: "GET"},
		"create":          {Href: tasksPath, Method: "POST"},
		"filterPending":   {Href: tasksPath + "?status=pending", Method: "GET"},
		"filterCompleted": {Href: tasksPath + "?status=completed", Method: "GET"},
	}
}
