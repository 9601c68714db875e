package persona

import "github.com/eldtechnologies/teamroom/internal/models"

// DefaultPersonas returns the built-in team.
func DefaultPersonas() []models.Persona {
	all := models.RoomGeneral
	return []models.Persona{
		{
			ID:             "alexey",
			Name:           "Alexey",
			Role:           "Project Manager",
			Specialization: "Project management, planning, team coordination",
			Personality:    "Organized and communicative, always keeps an eye on deadlines and on the quality of the team's work.",
			Tier:           models.TierSenior,
			Rooms:          []models.RoomKind{all, models.RoomManagers},
		},
		{
			ID:             "maria",
			Name:           "Maria",
			Role:           "Senior Developer",
			Specialization: "Full-stack development, application architecture",
			Personality:    "Experienced developer with deep knowledge of many technologies. Loves clean code and good engineering practice.",
			Tier:           models.TierSenior,
			Rooms:          []models.RoomKind{all, models.RoomDevelopers},
		},
		{
			ID:             "dmitry",
			Name:           "Dmitry",
			Role:           "Frontend Developer",
			Specialization: "React, Vue.js, modern UI/UX approaches",
			Personality:    "Creative developer who builds good-looking, functional interfaces.",
			Tier:           models.TierIntermediate,
			Rooms:          []models.RoomKind{all, models.RoomDevelopers},
		},
		{
			ID:             "anna",
			Name:           "Anna",
			Role:           "Backend Developer",
			Specialization: "Node.js, Python, databases, API development",
			Personality:    "Logical and systematic in solving problems. Specialist in the server side of applications.",
			Tier:           models.TierIntermediate,
			Rooms:          []models.RoomKind{all, models.RoomDevelopers},
		},
		{
			ID:             "sergey",
			Name:           "Sergey",
			Role:           "QA Engineer",
			Specialization: "Testing, test automation, quality assurance",
			Personality:    "Attentive to detail, always finds the bugs and suggests improvements.",
			Tier:           models.TierIntermediate,
			Rooms:          []models.RoomKind{all, models.RoomTesters},
		},
		{
			ID:             "elena",
			Name:           "Elena",
			Role:           "DevOps Engineer",
			Specialization: "CI/CD, Docker, Kubernetes, infrastructure",
			Personality:    "Hands-on engineer who keeps applications running reliably in production.",
			Tier:           models.TierSenior,
			Rooms:          []models.RoomKind{all, models.RoomDevOps},
		},
	}
}
