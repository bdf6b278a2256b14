package intake

// TaxType values of the taxType select. Only BusinessTaxType enables the
// business sections.
const (
	PersonalTaxType = "Personal Only"
	BusinessTaxType = "Personal + Business (Self-Employed/Freelance)"
)

// Answer keys the resolvers depend on by identity.
const (
	TaxTypeField          = "taxType"
	RentalIncomeField     = "rentalIncome"
	RentalExpensesSection = "rental_expenses"
)

var yesNo = []string{"No", "Yes"}

var defaultSchema = NewSchema(catalog())

// DefaultSchema returns the built-in tax intake catalog.
func DefaultSchema() *Schema {
	return defaultSchema
}

func catalog() []SectionDefinition {
	return []SectionDefinition{
		{
			ID:          "tax_situation",
			Title:       "Tax Situation",
			Category:    CategoryPersonal,
			Description: "First, let us determine what type of tax return we are preparing.",
			Fields: []FieldDefinition{
				{ID: TaxTypeField, Label: "What describes your tax situation for this year?", Type: FieldSelect, Required: true,
					Options: []string{PersonalTaxType, BusinessTaxType}},
				{ID: "filingStatus", Label: "Filing Status", Type: FieldSelect, Required: true,
					Options: []string{"Single", "Married Filing Jointly", "Married Filing Separately", "Head of Household", "Qualifying Widow(er)"}},
				{ID: "spouseName", Label: "Spouse Full Name", Type: FieldText,
					ShowIf: &Condition{Field: "filingStatus", Value: "Married Filing Jointly"}},
				{ID: "maritalChange", Label: "Were there any changes in marital status during the year?", Type: FieldSelect,
					Options: []string{"No Changes", "Married", "Divorced", "Widowed", "Separated"}},
			},
		},
		{
			ID:          "profile",
			Title:       "Personal Profile",
			Category:    CategoryPersonal,
			Description: "Basic contact and personal information.",
			Fields: []FieldDefinition{
				{ID: "firstName", Label: "First Name", Type: FieldText, Required: true},
				{ID: "lastName", Label: "Last Name", Type: FieldText, Required: true},
				{ID: "dob", Label: "Date of Birth", Type: FieldDate, Required: true},
				{ID: "phone", Label: "Phone Number", Type: FieldText, Required: true},
				{ID: "address", Label: "Street Address", Type: FieldText, Required: true},
				{ID: "state", Label: "State", Type: FieldSelect, Required: true, Options: []string{"AZ", "CA", "NV", "UT", "NM", "Other"}},
				{ID: "zip", Label: "Zip Code", Type: FieldText, Required: true},
				{ID: "occupation", Label: "Occupation", Type: FieldText, Required: true},
				{ID: "identityPIN", Label: "IRS Identity Protection PIN (If applicable)", Type: FieldText},
			},
		},
		{
			ID:       "dependents",
			Title:    "Dependents",
			Category: CategoryPersonal,
			GatingQuestion: &GatingQuestion{
				ID:   "hasDependents",
				Text: "Do you have any dependents to claim (Children, parents, etc)?",
			},
			Fields: []FieldDefinition{
				{ID: "dependentList", Label: "Dependents", Type: FieldGroup, Fields: []FieldDefinition{
					{ID: "name", Label: "Full Name", Type: FieldText},
					{ID: "ssn", Label: "SSN", Type: FieldText},
					{ID: "dob", Label: "Date of Birth", Type: FieldDate},
					{ID: "relationship", Label: "Relationship", Type: FieldText},
				}},
				{ID: "dependentNames", Label: "Dependent Names & SSNs", Type: FieldTextarea,
					Placeholder: "Name 1 - SSN - DOB - Relationship\nName 2 - SSN - DOB - Relationship"},
				{ID: "childcareExpenses", Label: "Did you pay any childcare expenses for these dependents?", Type: FieldSelect, Options: yesNo},
				{ID: "childcareAmount", Label: "Total Childcare Expenses Paid", Type: FieldCurrency,
					ShowIf: &Condition{Field: "childcareExpenses", Value: "Yes"}},
			},
		},
		{
			ID:       "income",
			Title:    "Personal Income",
			Category: CategoryPersonal,
			GatingQuestion: &GatingQuestion{
				ID:   "hasIncomeDocs",
				Text: "Did you receive any official income documents (W-2, 1099, etc)?",
			},
			Fields: []FieldDefinition{
				{ID: "w2Count", Label: "How many W-2 forms do you have?", Type: FieldNumber},
				{ID: "interestIncome", Label: "Interest/Dividend Income (1099-INT/DIV)", Type: FieldCurrency},
				{ID: "retirementIncome", Label: "Retirement Distributions (1099-R)", Type: FieldCurrency},
				{ID: "stockSales", Label: "Stock Sales Proceeds (1099-B)", Type: FieldCurrency},
				{ID: "cryptoActive", Label: "Did you sell, exchange, or receive any digital assets/crypto?", Type: FieldSelect, Options: yesNo},
				{ID: "cryptoDetails", Label: "Describe your digital asset activity (exchanges, approximate proceeds)", Type: FieldTextarea,
					ShowIf: &Condition{Field: "cryptoActive", Value: "Yes"}},
				{ID: "unemploymentIncome", Label: "Unemployment Compensation (1099-G)", Type: FieldCurrency},
				{ID: "gamblingWinnings", Label: "Gambling Winnings (W-2G)", Type: FieldCurrency},
				{ID: "alimonyReceived", Label: "Alimony Received", Type: FieldCurrency},
				{ID: RentalIncomeField, Label: "Rental Real Estate & Royalties (Schedule E)", Type: FieldCurrency},
				{ID: "k1Income", Label: "Income from Partnerships/S-Corps/Trusts (Schedule K-1)", Type: FieldCurrency},
				{ID: "socialSecurity", Label: "Social Security Benefits (SSA-1099)", Type: FieldCurrency},
				{ID: "juryDuty", Label: "Jury Duty Pay", Type: FieldCurrency},
			},
		},
		{
			ID:       "schedule_c_income",
			Title:    "Business Income (Schedule C)",
			Category: CategoryBusiness,
			GatingQuestion: &GatingQuestion{
				ID:   "hasSelfEmployment",
				Text: "Did you have any self-employment or business income?",
			},
			Fields: []FieldDefinition{
				{ID: "businessName", Label: "Business Name", Type: FieldText},
				{ID: "businessType", Label: "Business Activity/Description", Type: FieldText},
				{ID: "grossReceipts", Label: "Gross Receipts/Sales", Type: FieldCurrency},
				{ID: "otherIncome", Label: "Other Business Income", Type: FieldCurrency},
			},
		},
		{
			ID:       "business_expenses",
			Title:    "Business Expenses",
			Category: CategoryBusiness,
			GatingQuestion: &GatingQuestion{
				ID:   "hasBusinessExpenses",
				Text: "Do you have business expenses to deduct?",
			},
			Fields: []FieldDefinition{
				{ID: "advertising", Label: "Advertising & Marketing", Type: FieldCurrency},
				{ID: "insurance", Label: "Business Insurance", Type: FieldCurrency},
				{ID: "legalProf", Label: "Legal & Professional Fees", Type: FieldCurrency},
				{ID: "officeExpense", Label: "Office Expenses (Supplies, Software)", Type: FieldCurrency},
				{ID: "rentLease", Label: "Rent or Lease (Vehicles/Machinery/Building)", Type: FieldCurrency},
				{ID: "repairsMain", Label: "Repairs & Maintenance", Type: FieldCurrency},
				{ID: "taxesLicenses", Label: "Taxes & Licenses", Type: FieldCurrency},
				{ID: "travel", Label: "Travel Expenses", Type: FieldCurrency},
				{ID: "meals", Label: "Deductible Meals (50%)", Type: FieldCurrency},
				{ID: "utilities", Label: "Utilities (Business Only)", Type: FieldCurrency},
				{ID: "wages", Label: "Wages Paid to Employees", Type: FieldCurrency},
				{ID: "contractLabor", Label: "Contract Labor", Type: FieldCurrency},
				{ID: "otherExp", Label: "Other Expenses (List in notes)", Type: FieldCurrency},
			},
		},
		{
			ID:       RentalExpensesSection,
			Title:    "Rental Property Expenses (Schedule E)",
			Category: CategoryPersonal, // reachable only through rentalIncome
			GatingQuestion: &GatingQuestion{
				ID:   "hasRentalExpenses",
				Text: "Do you have expenses for your rental property?",
			},
			Fields: []FieldDefinition{
				{ID: "rentalAddress", Label: "Property Address", Type: FieldText},
				{ID: "rentalAdvertising", Label: "Advertising", Type: FieldCurrency},
				{ID: "rentalCleaning", Label: "Cleaning & Maintenance", Type: FieldCurrency},
				{ID: "rentalInsurance", Label: "Insurance", Type: FieldCurrency},
				{ID: "rentalRepairs", Label: "Repairs", Type: FieldCurrency},
				{ID: "rentalTaxes", Label: "Real Estate Taxes", Type: FieldCurrency},
				{ID: "rentalMortgageInterest", Label: "Mortgage Interest", Type: FieldCurrency},
				{ID: "rentalDepreciation", Label: "Depreciation Expense (if known)", Type: FieldCurrency},
			},
		},
		{
			ID:       "vehicle",
			Title:    "Vehicle Information",
			Category: CategoryBusiness,
			GatingQuestion: &GatingQuestion{
				ID:   "hasVehicle",
				Text: "Did you use a personal vehicle for business?",
			},
			Fields: []FieldDefinition{
				{ID: "vehicleDescription", Label: "Vehicle Make/Model/Year", Type: FieldText},
				{ID: "datePlacedInService", Label: "Date Placed in Service", Type: FieldDate},
				{ID: "totalMiles", Label: "Total Miles Driven", Type: FieldNumber},
				{ID: "businessMiles", Label: "Business Miles", Type: FieldNumber},
				{ID: "commutingMiles", Label: "Commuting Miles", Type: FieldNumber},
				{ID: "parkingTolls", Label: "Parking Fees & Tolls", Type: FieldCurrency},
			},
		},
		{
			ID:       "home_office",
			Title:    "Home Office Deduction",
			Category: CategoryBusiness,
			GatingQuestion: &GatingQuestion{
				ID:   "hasHomeOffice",
				Text: "Did you use a dedicated area of your home exclusively for business?",
			},
			Fields: []FieldDefinition{
				{ID: "homeSqFt", Label: "Total Home Sq Ft", Type: FieldNumber},
				{ID: "officeSqFt", Label: "Office Area Sq Ft", Type: FieldNumber},
				{ID: "hoMortgageInterest", Label: "Mortgage Interest", Type: FieldCurrency},
				{ID: "hoRealEstateTaxes", Label: "Real Estate Taxes", Type: FieldCurrency},
				{ID: "hoInsurance", Label: "Homeowners Insurance", Type: FieldCurrency},
				{ID: "hoRepairs", Label: "Repairs & Maintenance", Type: FieldCurrency},
				{ID: "hoUtilities", Label: "Utilities", Type: FieldCurrency},
				{ID: "hoOther", Label: "Other Home Expenses (HOA etc)", Type: FieldCurrency},
			},
		},
		{
			ID:       "schedule_a_itemized",
			Title:    "Itemized Deductions (Schedule A)",
			Category: CategoryPersonal,
			GatingQuestion: &GatingQuestion{
				ID:   "hasItemized",
				Text: "Do you want to report itemized deductions (Medical, Charity, Mortgage Interest)?",
			},
			Fields: []FieldDefinition{
				{ID: "medicalInsurance", Label: "Medical/Dental Insurance Premiums (Post-Tax)", Type: FieldCurrency},
				{ID: "doctorsDentists", Label: "Doctors, Dentists, Hospitals", Type: FieldCurrency},
				{ID: "mortgageInterest1098", Label: "Home Mortgage Interest (Form 1098)", Type: FieldCurrency},
				{ID: "realEstateTax", Label: "Real Estate Taxes (Primary Home)", Type: FieldCurrency},
				{ID: "charityCash", Label: "Charitable Gifts by Cash/Check", Type: FieldCurrency},
				{ID: "charityGoods", Label: "Charitable Gifts by Goods (Fair Market Value)", Type: FieldCurrency},
				{ID: "studentLoanInterest", Label: "Student Loan Interest", Type: FieldCurrency},
				{ID: "hsaContrib", Label: "HSA Contributions (Not through employer)", Type: FieldCurrency},
				{ID: "iraContrib", Label: "Traditional IRA Contributions", Type: FieldCurrency},
				{ID: "educatorExpenses", Label: "Educator Expenses (Teachers)", Type: FieldCurrency},
				{ID: "tuition", Label: "Tuition & Fees (1098-T)", Type: FieldCurrency},
				{ID: "energyCredits", Label: "Residential Energy Credits (Solar/Wind)", Type: FieldCurrency},
				{ID: "evCredit", Label: "Electric Vehicle Credit", Type: FieldCurrency},
			},
		},
		{
			ID:       "other_info",
			Title:    "Other Information",
			Category: CategoryPersonal,
			Fields: []FieldDefinition{
				{ID: "directDepositAccount", Label: "Bank Name for Direct Deposit", Type: FieldText},
				{ID: "routingNumber", Label: "Bank Routing Number", Type: FieldText},
				{ID: "accountNumber", Label: "Bank Account Number", Type: FieldText},
				{ID: "accountType", Label: "Account Type", Type: FieldSelect, Options: []string{"Checking", "Savings"}},
				{ID: "notes", Label: "Anything else your tax preparer should know?", Type: FieldTextarea},
			},
		},
	}
}
