package garmin

// The records below keep the commonly used top-level fields of each payload.
// Fields the provider adds or renames are ignored on decode.

// UserSettings is the user-settings document.
type UserSettings struct {
	ID           int64            `json:"id"`
	UserData     UserData         `json:"userData"`
	UserSleep    *UserSleep       `json:"userSleep,omitempty"`
	ConnectDate  *string          `json:"connectDate,omitempty"`
	SourceType   *string          `json:"sourceType,omitempty"`
	SleepWindows []map[string]any `json:"userSleepWindows,omitempty"`
}

// UserData holds physiological settings.
type UserData struct {
	Gender            string   `json:"gender"`
	Weight            float64  `json:"weight"`
	Height            float64  `json:"height"`
	TimeFormat        string   `json:"timeFormat"`
	BirthDate         string   `json:"birthDate"`
	MeasurementSystem string   `json:"measurementSystem"`
	ActivityLevel     *int     `json:"activityLevel,omitempty"`
	Handedness        string   `json:"handedness"`
	VO2MaxRunning     *float64 `json:"vo2MaxRunning,omitempty"`
	VO2MaxCycling     *float64 `json:"vo2MaxCycling,omitempty"`
	LactateThreshold  *float64 `json:"lactateThresholdSpeed,omitempty"`
}

// UserSleep is the configured sleep window in seconds after midnight.
type UserSleep struct {
	SleepTime        int  `json:"sleepTime"`
	DefaultSleepTime bool `json:"defaultSleepTime"`
	WakeTime         int  `json:"wakeTime"`
	DefaultWakeTime  bool `json:"defaultWakeTime"`
}

// SocialProfile is the public profile of the authenticated user.
type SocialProfile struct {
	ID                  int64    `json:"id"`
	ProfileID           int64    `json:"profileId"`
	GarminGUID          string   `json:"garminGUID"`
	DisplayName         string   `json:"displayName"`
	FullName            string   `json:"fullName"`
	UserName            string   `json:"userName"`
	ProfileImageLarge   string   `json:"profileImageUrlLarge"`
	ProfileImageMedium  string   `json:"profileImageUrlMedium"`
	ProfileImageSmall   string   `json:"profileImageUrlSmall"`
	Location            string   `json:"location"`
	FavoriteActivities  []string `json:"favoriteActivityTypes"`
	UserLevel           int      `json:"userLevel"`
	UserPoint           int      `json:"userPoint"`
	ProfileVisibility   string   `json:"profileVisibility"`
	ActivityVisibility  string   `json:"activityStartVisibility"`
	UserPro             bool     `json:"userPro"`
	ShowActivityClass   bool     `json:"showActivityClass"`
	ShowRecentDevice    bool     `json:"showRecentDevice"`
	ShowBadges          bool     `json:"showBadges"`
	ShowPersonalRecords bool     `json:"showPersonalRecords"`
}

// ActivityTypeDTO describes an activity type.
type ActivityTypeDTO struct {
	TypeID       int    `json:"typeId"`
	TypeKey      string `json:"typeKey"`
	ParentTypeID int    `json:"parentTypeId"`
}

// Activity is one recorded activity.
type Activity struct {
	ActivityID      int64            `json:"activityId"`
	ActivityName    string           `json:"activityName"`
	Description     *string          `json:"description,omitempty"`
	StartTimeLocal  string           `json:"startTimeLocal"`
	StartTimeGMT    string           `json:"startTimeGMT"`
	ActivityType    *ActivityTypeDTO `json:"activityType,omitempty"`
	Distance        float64          `json:"distance"`
	Duration        float64          `json:"duration"`
	ElapsedDuration float64          `json:"elapsedDuration"`
	MovingDuration  float64          `json:"movingDuration"`
	ElevationGain   float64          `json:"elevationGain"`
	ElevationLoss   float64          `json:"elevationLoss"`
	AverageSpeed    float64          `json:"averageSpeed"`
	MaxSpeed        float64          `json:"maxSpeed"`
	Calories        float64          `json:"calories"`
	AverageHR       float64          `json:"averageHR"`
	MaxHR           float64          `json:"maxHR"`
	Steps           int              `json:"steps"`
	OwnerID         int64            `json:"ownerId"`
	DeviceID        int64            `json:"deviceId"`
	Manufacturer    string           `json:"manufacturer"`
	HasPolyline     bool             `json:"hasPolyline"`
	Favorite        bool             `json:"favorite"`
}

// ActivityCount is the lifetime aggregation returned by the fitness stats service.
type ActivityCount struct {
	CountOfActivities int64  `json:"countOfActivities"`
	Date              string `json:"date"`
	// Stats is keyed by activity type; the per-type statistics stay opaque.
	Stats map[string]map[string]any `json:"stats"`
}

// Workout is a planned workout summary.
type Workout struct {
	WorkoutID       int64            `json:"workoutId"`
	OwnerID         int64            `json:"ownerId"`
	WorkoutName     string           `json:"workoutName"`
	Description     *string          `json:"description,omitempty"`
	UpdatedDate     string           `json:"updatedDate"`
	CreatedDate     string           `json:"createdDate"`
	SportType       *SportType       `json:"sportType,omitempty"`
	EstimatedTime   *float64         `json:"estimatedDurationInSecs,omitempty"`
	EstimatedDist   *float64         `json:"estimatedDistanceInMeters,omitempty"`
	WorkoutProvider string           `json:"workoutProvider"`
	Author          map[string]any   `json:"author,omitempty"`
	Shared          bool             `json:"shared"`
	Estimated       bool             `json:"estimated"`
	Segments        []map[string]any `json:"workoutSegments,omitempty"`
}

// SportType identifies the sport of a workout.
type SportType struct {
	SportTypeID  int    `json:"sportTypeId"`
	SportTypeKey string `json:"sportTypeKey"`
	DisplayOrder int    `json:"displayOrder"`
}

// WorkoutDetail is a workout including its segments and steps.
type WorkoutDetail struct {
	Workout
	PoolLength          float64        `json:"poolLength"`
	PoolLengthUnit      map[string]any `json:"poolLengthUnit,omitempty"`
	TrainingPlanID      *int64         `json:"trainingPlanId,omitempty"`
	AvgTrainingSpeed    *float64       `json:"avgTrainingSpeed,omitempty"`
	WorkoutSourceID     string         `json:"workoutSourceId"`
	Consumer            *string        `json:"consumer,omitempty"`
	AtpPlanID           *int64         `json:"atpPlanId,omitempty"`
	SessionTransitionOn bool           `json:"isSessionTransitionEnabled"`
}
