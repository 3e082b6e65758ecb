package rbac

// Permissions checked by the HTTP layer.
const (
	PermAssessmentView     = "assessment:view"
	PermAssessmentCreate   = "assessment:create"
	PermAssessmentEditOwn  = "assessment:edit_own"
	PermAssessmentEditAny  = "assessment:edit_any"
	PermSessionTake        = "session:take"
	PermSubmissionViewOwn  = "submission:view_own"
	PermSubmissionViewAll  = "submission:view_all"
	PermSubmissionEvaluate = "submission:evaluate"
	PermStatsView          = "stats:view"
	PermUsersList          = "users:list"
	PermUsersManage        = "users:manage"
	PermActivityView       = "activity:view"
)

// RolePermissions is the default policy. Admin owns everything.
var RolePermissions = map[string][]string{
	"student": {
		PermAssessmentView,
		PermSessionTake,
		PermSubmissionViewOwn,
		PermStatsView,
	},
	"instructor": {
		PermAssessmentView,
		PermAssessmentCreate,
		PermAssessmentEditOwn,
		PermSubmissionViewAll,
		PermSubmissionEvaluate,
		PermStatsView,
		PermUsersList,
		PermActivityView,
	},
	"admin": {
		"*",
	},
}
