package flow

// User-facing reply texts.
const (
	msgWelcome = "👋 Hi! I help you track the water you drink, the food you eat and your workouts.\n" +
		"Start with /set_profile to set up your profile."

	msgCommandsFmt = "Available commands:\n" +
		"/set_profile - set up your profile\n" +
		"/log_water <ml> - log water you drank\n" +
		"/log_food <product> - log food you ate\n" +
		"/log_workout <type> <minutes> - log a workout (%s)\n" +
		"/check_progress - today's progress\n" +
		"/charts - today's progress as a chart\n" +
		"/history <days> - the last 1-30 days\n" +
		"/cancel - cancel the current action"

	msgNeedProfile     = "Please set up your profile first with /set_profile."
	msgIdleHint        = "I didn't understand that. Send /help to see what I can do."
	msgUnknownCommand  = "Unknown command. Send /help to see the available commands."
	msgCancelled       = "Cancelled."
	msgNothingToCancel = "There is nothing to cancel."
	msgInternalError   = "😔 Sorry, something went wrong. Please try again."

	msgAskWeight   = "Enter your weight (kg):"
	msgAskHeight   = "Enter your height (cm):"
	msgAskAge      = "Enter your age:"
	msgAskActivity = "How many minutes of activity do you have per day?"
	msgAskCity     = "Which city are you in?"

	msgBadWeight  = "Please enter your weight in kg, a positive number up to 500. Try again:"
	msgBadHeight  = "Please enter your height in cm, a positive number up to 300. Try again:"
	msgBadAge     = "Please enter your age as a whole number from 1 to 150. Try again:"
	msgBadMinutes = "Please enter a whole number of minutes from 0 to 1440. Try again:"
	msgBadCity    = "❌ I couldn't get the weather for that city.\n" +
		"Please check the name and enter it again, for example: Moscow, London, New York"

	msgProfileDoneFmt = "✅ Profile saved!\n" +
		"🌡️ Temperature in %s: %.0f°C\n" +
		"💧 Water goal: %.0f ml\n" +
		"🔥 Calorie goal: %.0f kcal\n\n%s"

	msgAskWater    = "How much water did you drink (ml)? For example: 250"
	msgBadWater    = "Please enter the amount of water in ml, a positive number up to 10000, for example 250:"
	msgWaterLogged = "✅ Logged: %.0f ml of water\n💧 Remaining today: %.0f ml"

	msgAskFood         = "Which product did you eat? For example: banana"
	msgFoodFoundFmt    = "🍎 %s\nCalories: %.1f kcal per 100 g\nHow many grams did you eat?"
	msgFoodNotFound    = "Sorry, I couldn't find that product. Try another product or check the spelling."
	msgFoodSuggestFmt  = "Sorry, I couldn't find \"%s\". Maybe try: /log_food %s"
	msgFoodUnavailable = "Sorry, the food database is unavailable right now. Please try again later."
	msgBadGrams        = "Please enter the weight in grams, a positive number up to 5000:"
	msgFoodLoggedFmt   = "✅ Logged: %s\n- Weight: %.0f g\n- Calories: %.1f kcal"

	msgAskWorkoutFmt     = "Which workout did you do? Available types: %s"
	msgUnknownWorkoutFmt = "Unknown workout type. Use one of: %s"
	msgAskDuration       = "How many minutes did it last?"
	msgBadDuration       = "Please enter the workout time as a whole number of minutes from 1 to 1440:"
	msgWorkoutLoggedFmt  = "🏃 %s, %d min\n- Calories burned: %.0f kcal\n💧 Recommended extra water: %.0f ml"

	msgAskHistoryFmt = "For how many days should I show the history (%d-%d)?"
	msgBadHistoryFmt = "Please enter a whole number of days between %d and %d:"

	msgChartsUnavailable = "Sorry, charts are not available right now."
	msgChartCaptionFmt   = "📊 Progress for %s"
)
