package rbac

// Default policy. Students sit exams they purchased; staff publish
// exams and read attempts; only admins touch certificates, purchases
// and artifacts.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"staff": {
		"exam:publish",
		"exam:view",
		"attempt:view-all",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
